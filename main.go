package main

import "github.com/thaohienhomes/phochat-payments/cmd"

func main() {
	cmd.Execute()
}
