package main

import (
	"github.com/shouni/go-lens-batch/cmd"
)

func main() {
	cmd.Execute()
}
