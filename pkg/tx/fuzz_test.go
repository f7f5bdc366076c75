package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTransactionUnmarshal tests that arbitrary JSON does not panic and
// that every accepted transaction is valid and survives a re-encode.
func FuzzTransactionUnmarshal(f *testing.F) {
	f.Add([]byte(`{"sender":"a","recipient":"b","amount":5}`))
	f.Add([]byte(`{"sender":"a","recipient":"b","amount":"2.50"}`))
	f.Add([]byte(`{"sender":"a","recipient":"b","amount":1e64}`))
	f.Add([]byte(`{"sender":" ","recipient":"b","amount":1}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`[1,2,3]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var got Transaction
		if err := json.Unmarshal(data, &got); err != nil {
			return
		}
		if err := got.Validate(); err != nil {
			t.Fatalf("accepted invalid transaction: %v", err)
		}

		encoded, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var again Transaction
		if err := json.Unmarshal(encoded, &again); err != nil {
			t.Fatalf("re-decode %s: %v", encoded, err)
		}
		if !again.Equal(got) {
			t.Fatalf("round trip changed %s into %s", got, again)
		}
	})
}
