package main

import "github.com/rhythmerc/gentro-library/internal/cli"

func main() {
	cli.Execute()
}
