package main

import "github.com/agentic-research/dirworld/cmd"

func main() {
	cmd.Execute()
}
