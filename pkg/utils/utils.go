package utils

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// CropMiddle keeps the first head and last tail characters of str,
// joining them with "...". Strings that already fit are returned as is.
func CropMiddle(str string, head, tail int) string {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	if len(str) <= head+tail {
		return str
	}
	return str[:head] + "..." + str[len(str)-tail:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// WeiToEther converts a decimal wei string into ether. Arithmetic is done
// on decimals so values beyond 2^53 keep every digit.
func WeiToEther(wei string) (decimal.Decimal, error) {
	if wei == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse wei %q: %w", wei, err)
	}
	return d.Shift(-18), nil
}

// FormatEther renders a wei string as ether. decimals <= 0 prints the
// exact value; otherwise the result is rounded and trailing zeros removed.
func FormatEther(wei string, decimals int) string {
	eth, err := WeiToEther(wei)
	if err != nil {
		return "?"
	}
	if decimals > 0 {
		eth = eth.Round(int32(decimals))
	}
	return AddCommas(eth.String())
}

// FormatTimestamp renders unix seconds in local time.
func FormatTimestamp(unix int64) string {
	if unix <= 0 {
		return "-"
	}
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04:05")
}

// NormalizeAddress validates a hex address and returns it lower-cased,
// the form the indexer stores addresses in.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// ResolveURI rewrites ipfs:// URIs onto an HTTP gateway. Anything else is
// returned unchanged.
func ResolveURI(uri, gateway string) string {
	uri = strings.TrimSpace(uri)
	if gateway == "" || !strings.HasPrefix(strings.ToLower(uri), "ipfs://") {
		return uri
	}
	path := uri[len("ipfs://"):]
	path = strings.TrimPrefix(path, "ipfs/")
	base, err := url.Parse(gateway)
	if err != nil {
		return uri
	}
	return strings.TrimRight(base.String(), "/") + "/" + path
}
