package config

import (
	"testing"
)

func TestParseProfiles(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		want    []Profile
		wantErr bool
	}{
		{
			name:  "single profile with one param",
			specs: []string{"mtu1500=mtu:1500"},
			want: []Profile{
				{Name: "mtu1500", Params: map[string]string{"mtu": "1500"}},
			},
		},
		{
			name:  "multiple params",
			specs: []string{"tuned=mtu:9000,mss:8960"},
			want: []Profile{
				{Name: "tuned", Params: map[string]string{"mtu": "9000", "mss": "8960"}},
			},
		},
		{
			name:  "bare value shorthand maps to mtu",
			specs: []string{"jumbo=9000"},
			want: []Profile{
				{Name: "jumbo", Params: map[string]string{"mtu": "9000"}},
			},
		},
		{
			name:  "empty params is a valid baseline profile",
			specs: []string{"base="},
			want: []Profile{
				{Name: "base", Params: map[string]string{}},
			},
		},
		{
			name:  "multiple profiles keep input order",
			specs: []string{"mtu1500=mtu:1500", "mtu9000=mtu:9000"},
			want: []Profile{
				{Name: "mtu1500", Params: map[string]string{"mtu": "1500"}},
				{Name: "mtu9000", Params: map[string]string{"mtu": "9000"}},
			},
		},
		{
			name:    "duplicate names rejected",
			specs:   []string{"a=mtu:1500", "a=mtu:9000"},
			wantErr: true,
		},
		{
			name:    "empty list rejected",
			specs:   nil,
			wantErr: true,
		},
		{
			name:    "missing name rejected",
			specs:   []string{"=mtu:1500"},
			wantErr: true,
		},
		{
			name:    "missing equals rejected",
			specs:   []string{"mtu1500"},
			wantErr: true,
		},
		{
			name:    "param with empty value rejected",
			specs:   []string{"a=mtu:"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProfiles(tt.specs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseProfiles(%v) 应当返回错误", tt.specs)
				}
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("错误类型应为 *ConfigError, 实际 %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProfiles(%v) 返回错误: %v", tt.specs, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("profile 数量 = %d, 期望 %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Name != tt.want[i].Name {
					t.Errorf("profile[%d].Name = %q, 期望 %q", i, got[i].Name, tt.want[i].Name)
				}
				if len(got[i].Params) != len(tt.want[i].Params) {
					t.Errorf("profile[%d] 参数数量 = %d, 期望 %d", i, len(got[i].Params), len(tt.want[i].Params))
				}
				for k, v := range tt.want[i].Params {
					if got[i].Params[k] != v {
						t.Errorf("profile[%d].Params[%q] = %q, 期望 %q", i, k, got[i].Params[k], v)
					}
				}
			}
		})
	}
}
