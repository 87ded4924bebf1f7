// Command dmapi works with a Squonk Data Manager from the command line:
// access tokens, projects, project files and Jobs.
package main

import (
	"os"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
