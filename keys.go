package pushcast

import "github.com/jpalmerr/pushcast/internal/push"

// VAPIDKeys is an application server key pair, URL-safe base64 encoded.
type VAPIDKeys struct {
	PublicKey  string `json:"publicKey" yaml:"public_key"`
	PrivateKey string `json:"privateKey" yaml:"private_key"`
}

// GenerateVAPIDKeys creates a new key pair.
//
// Persist the pair and pass it to [WithVAPIDKeys]: subscriptions are bound
// to the public key they were created with.
func GenerateVAPIDKeys() (VAPIDKeys, error) {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, err
	}
	return VAPIDKeys{PublicKey: pub, PrivateKey: priv}, nil
}
