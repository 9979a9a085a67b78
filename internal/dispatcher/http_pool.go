package dispatcher

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPPool hands out fasthttp clients round robin.
type HTTPPool struct {
	clients []*fasthttp.Client
	next    atomic.Uint32
}

func NewHTTPPool(size int, timeout time.Duration) *HTTPPool {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
	}

	clients := make([]*fasthttp.Client, size)
	for i := range clients {
		clients[i] = &fasthttp.Client{
			Name:                      "modguard",
			MaxConnsPerHost:           256,
			MaxIdleConnDuration:       90 * time.Second,
			ReadTimeout:               timeout,
			WriteTimeout:              timeout,
			MaxConnWaitTimeout:        time.Second,
			MaxResponseBodySize:       1 << 20,
			MaxIdemponentCallAttempts: 1,
			TLSConfig:                 tlsConfig,
		}
	}
	return &HTTPPool{clients: clients}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.next.Add(1)
	return hp.clients[int(i)%len(hp.clients)]
}
