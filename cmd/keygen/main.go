// Command keygen generates an RSA signing key pair and writes it as PEM
// files, ready to be referenced by JWT_PRIVATE_KEY_FILE and
// JWT_PUBLIC_KEY_FILE.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nident/identity-server/token"
)

func main() {
	keyID := flag.String("kid", "primary", "key identifier embedded in token headers")
	bits := flag.Int("bits", 2048, "RSA key size")
	privateOut := flag.String("private", "jwt_private.pem", "private key output file")
	publicOut := flag.String("public", "jwt_public.pem", "public key output file")
	flag.Parse()

	if err := generate(*keyID, *bits, *privateOut, *publicOut); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s and %s (kid %q)\n", *privateOut, *publicOut, *keyID)
}

func generate(keyID string, bits int, privateOut, publicOut string) error {
	keyPair, err := token.GenerateKeyPair(keyID, bits)
	if err != nil {
		return err
	}

	privatePEM, err := keyPair.ExportPrivateKeyPEM()
	if err != nil {
		return err
	}
	publicPEM, err := keyPair.ExportPublicKeyPEM()
	if err != nil {
		return err
	}

	if err := os.WriteFile(privateOut, []byte(privatePEM), 0o600); err != nil {
		return err
	}
	return os.WriteFile(publicOut, []byte(publicPEM), 0o644)
}
