package main

import (
	"github.com/glutenguard/glutenguard/cmd"
)

func main() {
	cmd.Execute()
}
