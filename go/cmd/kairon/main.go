package main

import "github.com/patrickudo2004/kairon/go/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
