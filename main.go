package main

import "github.com/agenthub-dev/agenthub/cmd"

func main() {
	cmd.Execute()
}
