package main

import "github.com/epochledger/epochledger/cmd"

func main() {
	cmd.Execute()
}
