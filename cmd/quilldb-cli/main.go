// Interactive SQL client: REPL that reads statements until ';', sends them
// to a QuillDB server, and prints the framed response. Exits on "exit".
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"QuillDB/client"
)

var CLI struct {
	Addr string `help:"Server address." default:"localhost:7878"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("quilldb-cli"),
		kong.Description("Interactive QuillDB client."),
		kong.UsageOnError(),
	)

	c, err := client.Dial(CLI.Addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("Connected to %s. Terminate statements with ';', type 'exit' to quit.\n", CLI.Addr)

	scanner := bufio.NewScanner(os.Stdin)
	currentDB := "none"
	var pending strings.Builder

	for {
		if pending.Len() == 0 {
			fmt.Printf("%s> ", currentDB)
		} else {
			fmt.Print("   ...> ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if pending.Len() == 0 && strings.EqualFold(line, "exit") {
			return
		}
		if line == "" {
			continue
		}

		pending.WriteString(line)
		pending.WriteByte(' ')
		if !strings.HasSuffix(line, ";") {
			continue
		}

		sql := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(pending.String()), ";"))
		pending.Reset()
		if sql == "" {
			continue
		}

		resp, err := c.Query(sql)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		currentDB = resp.CurrentDB
		if resp.OK {
			if resp.Body != "" {
				fmt.Println(resp.Body)
			}
		} else {
			fmt.Printf("ERR: %s\n", resp.Body)
		}
	}
}
