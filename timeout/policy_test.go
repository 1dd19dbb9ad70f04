// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	for _, st := range service.Types() {
		t.Run(st.String(), func(t *testing.T) {
			assert.Equal(t, DefaultHTTPTimeout, DefaultPolicy.Timeout(&request.Execution{Service: st}))
		})
	}
	t.Run("unknown service", func(t *testing.T) {
		assert.Equal(t, DefaultHTTPTimeout, DefaultPolicy.Timeout(&request.Execution{Service: service.Type(99)}))
	})
}

func TestInfinite(t *testing.T) {
	a := Infinite.Timeout(&request.Execution{})
	assert.Equal(t, time.Duration(math.MaxInt64), a)
	b := Infinite.Timeout(&request.Execution{Attempt: 10, Err: syscall.ETIMEDOUT})
	assert.Equal(t, time.Duration(math.MaxInt64), b)
}

func TestFixed(t *testing.T) {
	assert.PanicsWithValue(t, "httpcmd/timeout: timeout must be positive", func() { Fixed(0) })

	p := Fixed(33 * time.Hour)
	a := p.Timeout(&request.Execution{})
	assert.Equal(t, 33*time.Hour, a)
	b := p.Timeout(&request.Execution{Service: service.Search, Attempt: 1})
	assert.Equal(t, 33*time.Hour, b)
}

func TestPerService(t *testing.T) {
	t.Run("Bad Args", func(t *testing.T) {
		assert.PanicsWithValue(t, "httpcmd/timeout: fallback must be positive", func() {
			PerService(nil, 0)
		})
		assert.PanicsWithValue(t, "httpcmd/timeout: timeout must be positive", func() {
			PerService(map[service.Type]time.Duration{service.Query: -time.Second}, time.Second)
		})
	})
	t.Run("Normal", func(t *testing.T) {
		m := map[service.Type]time.Duration{
			service.Analytics:  2 * time.Minute,
			service.Management: 10 * time.Second,
		}
		p := PerService(m, time.Second)
		m[service.Analytics] = time.Hour
		assert.Equal(t, 2*time.Minute, p.Timeout(&request.Execution{Service: service.Analytics}))
		assert.Equal(t, 10*time.Second, p.Timeout(&request.Execution{Service: service.Management}))
		assert.Equal(t, time.Second, p.Timeout(&request.Execution{Service: service.Query}))
	})
}
