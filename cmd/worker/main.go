package main

import (
	"github.com/propintel/worker-go/pkg/root"

	_ "github.com/propintel/worker-go/pkg/console" // Register commands
)

func main() {
	root.Execute()
}
