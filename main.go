package main

import (
	"github.com/laforge-app/laforge/cmd"
	"github.com/laforge-app/laforge/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
