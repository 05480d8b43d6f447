// Command trustctl is the operator CLI for trustcore.
package main

import "trustcore/internal/cli"

func main() {
	cli.Execute()
}
