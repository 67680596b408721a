package domain

import "time"

type Config struct {
	FQDN       string        `yaml:"fqdn"`
	PrivateKey string        `yaml:"privatekey"`
	Attester   string        `yaml:"attester"`
	SessionTTL time.Duration `yaml:"sessionTTL"`
	VoteTally  VoteTally     `yaml:"voteTally"`
}
