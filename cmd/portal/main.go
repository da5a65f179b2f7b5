package main

import "github.com/vietddude/partners/internal/cli"

func main() {
	cli.Execute()
}
