// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"github.com/dotmatrix-chat/dotmatrix/lib/config"
	"github.com/dotmatrix-chat/dotmatrix/messaging"
)

// MethodKind is a supported way to log in.
type MethodKind int

const (
	MethodPassword MethodKind = iota
	MethodSSO
)

// Method is one login choice offered to the user. Provider is set for
// SSO through a specific identity provider and nil for generic SSO.
type Method struct {
	Kind     MethodKind
	Provider *messaging.IdentityProvider
}

// Label is the text of the method's button.
func (method Method) Label() string {
	switch {
	case method.Kind == MethodPassword:
		return "Password"
	case method.Provider == nil:
		return "Single sign-on"
	case method.Provider.Name != "":
		return "Continue with " + method.Provider.Name
	default:
		return "Continue with " + method.Provider.ID
	}
}

// FilterMethods turns advertised login flows into login choices.
// m.login.password becomes Password. m.login.sso without identity
// providers becomes generic SSO. m.login.sso with identity providers is
// expanded into one choice per provider or dropped entirely, as policy
// says. Every other flow type is dropped. Duplicates collapse.
func FilterMethods(flows []messaging.LoginFlow, policy config.SSOProviderPolicy) []Method {
	var methods []Method
	seenPassword, seenGenericSSO := false, false
	seenProviders := make(map[string]bool)

	for _, flow := range flows {
		switch flow.Type {
		case messaging.LoginTypePassword:
			if !seenPassword {
				seenPassword = true
				methods = append(methods, Method{Kind: MethodPassword})
			}
		case messaging.LoginTypeSSO:
			if len(flow.IdentityProviders) == 0 {
				if !seenGenericSSO {
					seenGenericSSO = true
					methods = append(methods, Method{Kind: MethodSSO})
				}
				continue
			}
			if policy != config.SSOExpand {
				continue
			}
			for _, provider := range flow.IdentityProviders {
				if provider.ID == "" || seenProviders[provider.ID] {
					continue
				}
				seenProviders[provider.ID] = true
				methods = append(methods, Method{Kind: MethodSSO, Provider: &provider})
			}
		}
	}
	return methods
}
