package domain

import "time"

// Connection is one proxied connection as reported by the daemon.
type Connection struct {
	Start       time.Time          `json:"start"`
	ID          string             `json:"id"`
	Rule        string             `json:"rule"`
	RulePayload string             `json:"rulePayload"`
	Chains      []string           `json:"chains"`
	Metadata    ConnectionMetadata `json:"metadata"`
	Upload      int64              `json:"upload"`
	Download    int64              `json:"download"`
}

// ConnectionMetadata describes the endpoints of a connection.
type ConnectionMetadata struct {
	Network         string `json:"network"`
	Type            string `json:"type"`
	SourceIP        string `json:"sourceIP"`
	DestinationIP   string `json:"destinationIP"`
	SourcePort      string `json:"sourcePort"`
	DestinationPort string `json:"destinationPort"`
	Host            string `json:"host"`
	DNSMode         string `json:"dnsMode"`
	ProcessPath     string `json:"processPath"`
}

// DisplayHost prefers the sniffed host name over the destination address.
func (m ConnectionMetadata) DisplayHost() string {
	if m.Host == "" {
		return m.DestinationIP
	}
	return m.Host
}

// Total is upload plus download bytes.
func (c Connection) Total() int64 {
	return c.Upload + c.Download
}
