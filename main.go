// ./main.go
package main

import (
	"github.com/jakoleksy/ecobeectl/cmd"
)

func main() {
	cmd.Execute()
}
