package relay

import "crypto/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
)

// newCodeLocked returns a room code not present in the registry. Caller must
// hold e.mu. With 36^5 possible codes a retry is already a rarity.
func (e *Engine) newCodeLocked() string {
	for {
		code := randomCode()
		if _, taken := e.rooms[code]; !taken {
			return code
		}
	}
}

func randomCode() string {
	buf := make([]byte, codeLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
