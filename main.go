package main

import (
	"github.com/dagargo/elektroid/cmd"
	"github.com/dagargo/elektroid/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
