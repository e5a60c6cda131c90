// cmd/krites/main.go
package main

import (
	"github.com/mwiater/krites/internal/commands"
)

// main starts the krites CLI application by delegating to the cobra root
// command. It does not take any arguments and does not return a value.
func main() {
	commands.Execute()
}
