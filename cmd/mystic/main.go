package main

import "github.com/louise36-g/mysticoracle/internal/cli"

func main() {
	cli.Execute()
}
