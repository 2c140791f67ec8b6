/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/openticks/dbz/cmd/dbz/cmd"
)

func main() {
	cmd.Execute()
}
