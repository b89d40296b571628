/*
Package constants provides common values used across all aresolve packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

    consts := constants.Get()
    fmt.Println("I am", consts.DigProgramName, "based on", consts.RFC)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

// Constants contains the system-wide constants
type Constants struct {
	DigProgramName    string
	ResolvdProgramName string // Package related constants
	Version           string
	PackageName       string
	PackageURL        string
	RFC               string

	DefaultServer  string // Default upstream recursive server (no port)
	DefaultPort    string // DNS Related constants
	DefaultTimeoutMS int  // Overall per-call timeout, milliseconds
	IdleTimeoutSec int    // Server connection idle-expiry, seconds
	MaxRequestID   int    // Exclusive upper bound of the 16-bit id space

	MinimumViableDNSMessage uint // MsgHdr + one Question with zero length name
	UDPReadSize             int  // One UDP datagram is read in one chunk, at most this many bytes

	DNSUDPTransport  string // Suitable for the "net" package, but just to make sure we're
	DNSTCPTransport  string // consistent across the whole package.
	URISchemeUDP     string
	URISchemeTCP     string
	URISchemeDoH     string
	DoHAcceptValue   string // RFC8484 media type
	DoHQueryParam    string // RFC8484 GET query parameter name
	AcceptHeader     string
	ContentTypeHeader string
	UserAgentHeader  string
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		DigProgramName:     "aresolve-dig",
		ResolvdProgramName: "aresolve-resolvd",
		Version:            "v0.1.0",
		PackageName:        "aresolve",
		PackageURL:         "https://github.com/dingostack/aresolve",
		RFC:                "RFC1035",

		DefaultServer:    "8.8.8.8",
		DefaultPort:      "53",
		DefaultTimeoutMS: 3000,
		IdleTimeoutSec:   30,
		MaxRequestID:     65536,

		MinimumViableDNSMessage: 16, // A legit binary DNS Message *cannot* be shorter than this
		UDPReadSize:             512,

		DNSUDPTransport: "udp",
		DNSTCPTransport: "tcp",
		URISchemeUDP:    "udp",
		URISchemeTCP:    "tcp",
		URISchemeDoH:    "https",

		DoHAcceptValue:    "application/dns-message",
		DoHQueryParam:     "dns",
		AcceptHeader:      "Accept",
		ContentTypeHeader: "Content-Type",
		UserAgentHeader:   "User-Agent",
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
