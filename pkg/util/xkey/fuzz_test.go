package xkey

import (
	"strings"
	"testing"
)

func FuzzDerive(f *testing.F) {
	// 种子语料：常规输入、分隔符注入、超长键
	f.Add("default", "user:42")
	f.Add("a", "b")
	f.Add("ns\x1f", "key")
	f.Add("ns", strings.Repeat("x", 4096))
	f.Add("中文", "键")

	f.Fuzz(func(t *testing.T, namespace, key string) {
		got, err := Derive(namespace, key)
		if namespace == "" || key == "" {
			if err == nil {
				t.Fatalf("Derive(%q, %q) should reject empty input", namespace, key)
			}
			return
		}
		if err != nil {
			t.Fatalf("Derive(%q, %q) failed: %v", namespace, key, err)
		}
		if len(got) != KeyLen {
			t.Fatalf("Derive(%q, %q) = %q, want %d hex chars", namespace, key, got, KeyLen)
		}

		// 确定性：重复推导必须一致
		again, err := Derive(namespace, key)
		if err != nil || again != got {
			t.Fatalf("Derive not deterministic: %q vs %q (err=%v)", got, again, err)
		}

		// (namespace, key) 的组合不得与串接歧义冲突
		if namespace != key {
			swapped, err := Derive(key, namespace)
			if err == nil && swapped == got {
				t.Fatalf("Derive(%q, %q) collides with swapped arguments", namespace, key)
			}
		}
	})
}
