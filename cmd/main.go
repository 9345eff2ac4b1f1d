package main

import (
	cmd "github.com/kerbaras/bukadown/cmd/bukadown"
)

func main() {
	cmd.Execute()
}
