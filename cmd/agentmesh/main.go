package main

import "github.com/viant/agentmesh/internal/cli"

func main() {
	cli.Execute()
}
