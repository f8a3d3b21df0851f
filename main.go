package main

import (
	"os"

	"github.com/jcdickinson/anthocheck/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
