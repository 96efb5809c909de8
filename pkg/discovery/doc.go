// Package discovery advertises and finds netlab echo servers over
// mDNS/DNS-SD.
//
// Two service types are used, one per layer:
//
//	_netlab-echo._tcp   plain TCP echo
//	_netlab-echos._tcp  TLS echo
//
// The instance name defaults to "netlab-<hostname>-<port>". TXT records
// carry:
//
//	txtvers  record format version (1)
//	tls      "1" for the TLS layer
//	sni      hostname the certificate is issued for (TLS only)
//	fp       first 64 bits of SHA-256 over the leaf certificate, hex
//
// The fingerprint lets a client print which certificate it expects before
// dialling. It is informational; trust still comes from the CA.
package discovery
