package utils

import "runtime"

// ZeroBytes overwrites b with zeros. KeepAlive stops the compiler from
// treating the writes as dead stores.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
