package model

import "strings"

// Erc20 holds the immutable metadata of a token contract on one chain.
// Balances and allowances are tracked separately in the store because the
// entries mutate independently of the metadata.
type Erc20 struct {
	Chain    ChainID
	Address  string
	Symbol   string
	Name     string
	Decimals uint8
}

// TokenID is the chain-qualified address used to key Erc20 records.
func TokenID(chain ChainID, address string) string {
	return chain.String() + "!" + strings.ToLower(address)
}
