package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	token := flag.String("token", "", "Admin token to hash (reads stdin if omitted)")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flag.Parse()

	value := *token
	if value == "" {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			fmt.Fprintln(os.Stderr, "Usage: hashtoken -token <value>  (or pipe the token on stdin)")
			os.Exit(1)
		}
		value = strings.TrimSpace(line)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(value), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hash)
}
