package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"syscall"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// maxMediaBytes is the X image upload limit.
const maxMediaBytes = 5 << 20

// maxMediaRedirects bounds redirects followed while downloading media.
const maxMediaRedirects = 5

// errNonPublicAddress is returned by the media dialer for hosts that resolve
// outside the public internet.
var errNonPublicAddress = errors.New("media host is not a public address")

// reservedPrefixes are global unicast ranges that are still not reachable
// on the public internet.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// publicAddr reports whether ip may be dialed for a user-supplied URL.
func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

// dialPublicOnly is a net.Dialer Control hook. It runs after DNS
// resolution, so every resolved address is checked, including redirects.
func dialPublicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddr(ip) {
		return fmt.Errorf("%w: %s", errNonPublicAddress, ip)
	}
	return nil
}

// NewMediaHTTPClient returns the client used for user-supplied media URLs.
// It only follows https redirects and refuses to dial non-public addresses.
func NewMediaHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   dialPublicOnly,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   apiclient.DefaultTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to %s url refused", req.URL.Scheme)
			}
			if len(via) >= maxMediaRedirects {
				return fmt.Errorf("stopped after %d redirects", maxMediaRedirects)
			}
			return nil
		},
	}
}

// mediaFetcher downloads the attachments of a post.
type mediaFetcher struct {
	api *apiclient.Client
	// schemes lists the accepted URL schemes.
	schemes []string
}

func newMediaFetcher(provider social.Provider) *mediaFetcher {
	return &mediaFetcher{
		api:     apiclient.New(provider, NewMediaHTTPClient(), ""),
		schemes: []string{"https"},
	}
}

// mediaFile is a downloaded attachment.
type mediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f *mediaFetcher) checkURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, invalid("media_urls", "malformed url "+raw)
	}
	for _, s := range f.schemes {
		if u.Scheme == s {
			return u, nil
		}
	}
	return nil, invalid("media_urls", "only https urls are accepted: "+raw)
}

// fetch downloads every attachment before any provider call so a bad URL
// fails the publish without side effects. Download failures are reported
// as invalid input; the fetched body never reaches the caller.
func (f *mediaFetcher) fetch(ctx context.Context, urls []string) ([]mediaFile, error) {
	files := make([]mediaFile, 0, len(urls))
	for _, raw := range urls {
		u, err := f.checkURL(raw)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, invalid("media_urls", "malformed url "+raw)
		}
		req.Header.Set("Accept", "*/*")

		resp, err := f.api.Do(ctx, "fetch_media", req)
		if err != nil {
			logger.FromContext(ctx).Warn("Media download failed", "url", raw, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if status := social.StatusCode(err); status != 0 {
				return nil, invalid("media_urls", fmt.Sprintf("download of %s returned status %d", raw, status))
			}
			if errors.Is(err, errNonPublicAddress) {
				return nil, invalid("media_urls", "host is not reachable: "+raw)
			}
			return nil, invalid("media_urls", "download failed: "+raw)
		}
		if len(resp.Body) == 0 {
			return nil, invalid("media_urls", "empty media at "+raw)
		}
		if len(resp.Body) > maxMediaBytes {
			return nil, invalid("media_urls", "media too large at "+raw)
		}
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(resp.Body)
		}
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "media"
		}
		files = append(files, mediaFile{Name: name, ContentType: ct, Data: resp.Body})
	}
	return files, nil
}
