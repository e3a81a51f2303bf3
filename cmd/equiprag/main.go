// Command equiprag indexes medical equipment catalogs and serves hybrid
// retrieval over REST, MCP and the command line.
package main

import "github.com/dshills/equiprag/internal/cli"

func main() {
	cli.Execute()
}
