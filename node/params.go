// Copyright 2026 The lognode Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"net/http"
	"net/url"
	"strconv"
)

// queryParams parses the request's query string. An unparseable query
// behaves as if it were empty.
func queryParams(r *http.Request) url.Values {
	v, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return url.Values{}
	}
	return v
}

// param returns the value of key. A key that appears more than once is
// treated as absent.
func param(v url.Values, key string) (string, bool) {
	vals := v[key]
	if len(vals) != 1 {
		return "", false
	}
	return vals[0], true
}

// intParam parses key as a base-10 64-bit integer. Values that overflow
// are invalid, not clamped.
func intParam(v url.Values, key string) (int64, bool) {
	s, ok := param(v, key)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// boolParam parses key as a boolean. Only the literal "true" is true;
// everything else, including absence, is false.
func boolParam(v url.Values, key string) bool {
	s, ok := param(v, key)
	return ok && s == "true"
}
