// Command hashpw prints a bcrypt hash for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpw 'my-admin-password'
package main

import (
	"fmt"
	"os"

	"motelhub/pkg/hash"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}

	h, err := hash.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
	fmt.Println(h)
}
