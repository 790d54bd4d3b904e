package main

import "github.com/example/arca-scheduler/internal/interfaces/cli"

func main() {
	cli.Execute()
}
