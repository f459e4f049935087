// Command hashpw generates the bcrypt hash for the operator password used by
// the control-plane API. Put the output in auth.admin_password_hash or the
// AUTH_ADMIN_PASSWORD_HASH environment variable.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/auth"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimSpace(input)
	}

	if password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error hashing password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
