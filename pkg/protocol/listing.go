package protocol

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/dep2p/go-peershare/pkg/types"
)

// 资源列表行: "<name> (Owner: <identity>, IP: <ip>, TCP Port: <port>)"
const (
	ownerMarker = " (Owner: "
	ipMarker    = ", IP: "
	portMarker  = ", TCP Port: "
)

// NotFoundMessage 资源持有者查询的未找到响应
func NotFoundMessage(resource string) string {
	return fmt.Sprintf("Error: Resource '%s' not found.", resource)
}

// FormatResources 编码 query resources 响应
//
// 响应超过 MaxPayloadSize 时在行边界截断，只包含前面的条目。
func FormatResources(entries []types.ResourceEntry) string {
	if len(entries) == 0 {
		return NoResources
	}

	b := newListing(ResourcesHeader)
	for _, e := range entries {
		line := fmt.Sprintf("%s%s%s%s%s%s%d)\n",
			e.Name, ownerMarker, e.Owner.Identity, ipMarker, e.Owner.Address, portMarker, e.Owner.Port)
		if !b.add(line) {
			break
		}
	}
	return b.String()
}

// ParseResources 解码 query resources 响应，"No resources available." 返回空列表
func ParseResources(payload string) ([]types.ResourceEntry, error) {
	if payload == NoResources {
		return nil, nil
	}
	body, ok := strings.CutPrefix(payload, ResourcesHeader)
	if !ok {
		return nil, fmt.Errorf("%w: missing resources header", ErrMalformedResponse)
	}

	var entries []types.ResourceEntry
	for _, line := range splitLines(body) {
		entry, err := parseResourceLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseResourceLine(line string) (types.ResourceEntry, error) {
	name, rest, ok := strings.Cut(line, ownerMarker)
	if !ok {
		return types.ResourceEntry{}, fmt.Errorf("%w: resource line %q", ErrMalformedResponse, line)
	}
	rest, ok = strings.CutSuffix(rest, ")")
	if !ok {
		return types.ResourceEntry{}, fmt.Errorf("%w: resource line %q", ErrMalformedResponse, line)
	}
	identity, rest, ok := strings.Cut(rest, ipMarker)
	if !ok {
		return types.ResourceEntry{}, fmt.Errorf("%w: resource line %q", ErrMalformedResponse, line)
	}
	ip, port, ok := strings.Cut(rest, portMarker)
	if !ok {
		return types.ResourceEntry{}, fmt.Errorf("%w: resource line %q", ErrMalformedResponse, line)
	}

	owner, err := parseOwner(identity, ip, port)
	if err != nil {
		return types.ResourceEntry{}, err
	}
	return types.ResourceEntry{Name: name, Owner: owner}, nil
}

// FormatUsers 编码 query users 响应
func FormatUsers(identities []string) string {
	if len(identities) == 0 {
		return NoActiveUsers
	}

	b := newListing(ActiveUsersHeader)
	for _, id := range identities {
		if !b.add(id + "\n") {
			break
		}
	}
	return b.String()
}

// ParseUsers 解码 query users 响应，"No active users." 返回空列表
func ParseUsers(payload string) ([]string, error) {
	if payload == NoActiveUsers {
		return nil, nil
	}
	body, ok := strings.CutPrefix(payload, ActiveUsersHeader)
	if !ok {
		return nil, fmt.Errorf("%w: missing users header", ErrMalformedResponse)
	}
	return splitLines(body), nil
}

// FormatOwners 编码 get resource_info 响应
//
// 没有活跃持有者时返回未找到错误文本；从未发布过的资源同样如此，
// 调用方无法区分两者。
func FormatOwners(resource string, owners []types.Owner) string {
	if len(owners) == 0 {
		return NotFoundMessage(resource)
	}

	b := newListing("")
	for _, o := range owners {
		if !b.add(fmt.Sprintf("%s %s %d\n", o.Identity, o.Address, o.Port)) {
			break
		}
	}
	return b.String()
}

// ParseOwners 解码 get resource_info 响应
//
// 以 "Error" 开头的响应返回包装了 ErrResourceNotFound 的错误。
func ParseOwners(payload string) ([]types.Owner, error) {
	if strings.HasPrefix(payload, "Error") {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, payload)
	}

	var owners []types.Owner
	for _, line := range splitLines(payload) {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: owner line %q", ErrMalformedResponse, line)
		}
		owner, err := parseOwner(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: empty owner list", ErrResourceNotFound)
	}
	return owners, nil
}

func parseOwner(identity, ip, port string) (types.Owner, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return types.Owner{}, fmt.Errorf("%w: owner address %q: %v", ErrMalformedResponse, ip, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return types.Owner{}, fmt.Errorf("%w: owner port %q: %v", ErrMalformedResponse, port, err)
	}
	return types.Owner{Identity: identity, Address: addr, Port: p}, nil
}

// listing 以整行为单位构造不超过 MaxPayloadSize 的响应
type listing struct {
	strings.Builder
}

func newListing(header string) *listing {
	l := &listing{}
	l.WriteString(header)
	return l
}

// add 追加一行，超出 MaxPayloadSize 时不追加并返回 false
func (l *listing) add(line string) bool {
	if l.Len()+len(line) > MaxPayloadSize {
		return false
	}
	l.WriteString(line)
	return true
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
