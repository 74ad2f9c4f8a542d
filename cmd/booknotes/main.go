package main

import "github.com/user/booknotes/internal/cli"

func main() {
	cli.Execute()
}
