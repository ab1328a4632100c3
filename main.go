package main

import "github.com/duckpond-io/pondctl/cli"

func main() {
	cli.Execute()
}
