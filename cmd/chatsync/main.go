package main

import "github.com/vedran77/chatsync/internal/cli"

func main() {
	cli.Execute()
}
