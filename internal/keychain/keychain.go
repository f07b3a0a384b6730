// Package keychain stores the bot token in the operating system keychain.
package keychain

import "github.com/zalando/go-keyring"

const serviceName = "ferry"

// TokenAccount is the keychain account the bot token lives under.
const TokenAccount = "bot-token"

// Get retrieves a secret from the system keychain.
func Get(account string) (string, error) {
	return keyring.Get(serviceName, account)
}

// Set stores a secret in the system keychain.
func Set(account, value string) error {
	return keyring.Set(serviceName, account, value)
}

// Delete removes a secret from the system keychain.
func Delete(account string) error {
	return keyring.Delete(serviceName, account)
}
