package utils

import (
	prt "github.com/abcfe/voterkey/protocol"
)

// "custodian:key:"
func GetCustodianKeyName(alias string) []byte {
	return []byte(prt.PrefixCustodianKey + alias)
}

// "custodian:kdf"
func GetCustodianKDFName() []byte {
	return []byte(prt.PrefixCustodianKDF)
}
