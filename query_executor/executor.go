// Package executor runs SQL statements against the storage engine. Parsing
// is delegated to sqlparser; every statement executes on the transaction
// queue's worker, so at most one statement mutates on-disk state at a time.
package executor

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	storageengine "QuillDB/storage_engine"
	txn "QuillDB/transaction_manager"
	"QuillDB/types"
)

type Executor struct {
	DBM *storageengine.DatabaseManager
	Txn *txn.Manager
}

func New(dbm *storageengine.DatabaseManager, tm *txn.Manager) *Executor {
	return &Executor{DBM: dbm, Txn: tm}
}

// Execute parses one statement and runs it, returning the textual result
// body. A USE statement changes the database manager's selection; the
// selected name is not returned here (ExecuteSession returns it).
func (ex *Executor) Execute(sql string) (string, error) {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return "", fmt.Errorf("%w: empty statement", types.ErrInvalidArgument)
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}

	var out string
	err = ex.Txn.Execute(func(*txn.Transaction) error {
		var runErr error
		out, runErr = ex.run(stmt)
		return runErr
	})
	return out, err
}

// ExecuteSession runs one statement on behalf of a connection that carries
// its own current-database name: the database is re-selected inside the same
// queued transaction, and the possibly changed selection is returned.
func (ex *Executor) ExecuteSession(sql, currentDB string) (out, newDB string, err error) {
	newDB = currentDB

	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return "", newDB, fmt.Errorf("%w: empty statement", types.ErrInvalidArgument)
	}
	stmt, perr := sqlparser.Parse(sql)
	if perr != nil {
		return "", newDB, fmt.Errorf("%w: %v", types.ErrInvalidArgument, perr)
	}

	err = ex.Txn.Execute(func(*txn.Transaction) error {
		if currentDB == "" {
			ex.DBM.ClearCurrentDB()
		} else if ex.DBM.CurrentDB() != currentDB {
			if _, uerr := ex.DBM.UseDB(currentDB); uerr != nil {
				newDB = ""
				return uerr
			}
		}
		var runErr error
		out, runErr = ex.run(stmt)
		newDB = ex.DBM.CurrentDB()
		return runErr
	})
	return out, newDB, err
}

func (ex *Executor) run(stmt sqlparser.Statement) (string, error) {
	switch s := stmt.(type) {
	case *sqlparser.DBDDL:
		return ex.runDBDDL(s)
	case *sqlparser.Use:
		return ex.runUse(s)
	case *sqlparser.DDL:
		return ex.runDDL(s)
	case *sqlparser.Insert:
		return ex.runInsert(s)
	case *sqlparser.Select:
		return ex.runSelect(s)
	case *sqlparser.Update:
		return ex.runUpdate(s)
	case *sqlparser.Delete:
		return ex.runDelete(s)
	case *sqlparser.Show:
		return ex.runShow(s)
	default:
		return "", fmt.Errorf("%w: unsupported statement %T", types.ErrInvalidArgument, stmt)
	}
}

// engine returns the engine of the selected database.
func (ex *Executor) engine() (*storageengine.StorageEngine, error) {
	if e := ex.DBM.Engine(); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: no database selected, run USE <database> first", types.ErrInvalidArgument)
}

func (ex *Executor) runShow(s *sqlparser.Show) (string, error) {
	switch strings.ToLower(s.Type) {
	case "databases":
		names, err := ex.DBM.ListDatabases()
		if err != nil {
			return "", err
		}
		return strings.Join(names, "\n"), nil
	default:
		return "", fmt.Errorf("%w: unsupported SHOW %s", types.ErrInvalidArgument, s.Type)
	}
}
