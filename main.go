package main

import (
	"os"

	"hotpath/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
