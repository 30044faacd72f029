package validator

import "testing"

type registerBody struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Optional string
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		input      registerBody
		wantFields []string
	}{
		{
			name: "Valid",
			input: registerBody{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Password: "hunter22",
			},
		},
		{
			name:       "MissingRequired",
			input:      registerBody{Password: "hunter22"},
			wantFields: []string{"Name", "Email"},
		},
		{
			name: "BadEmail",
			input: registerBody{
				Name:     "Jane Doe",
				Email:    "not-an-email",
				Password: "hunter22",
			},
			wantFields: []string{"Email"},
		},
		{
			name: "ShortPassword",
			input: registerBody{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Password: "abc",
			},
			wantFields: []string{"Password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateStruct(tt.input)

			if len(tt.wantFields) == 0 && len(errs) > 0 {
				t.Fatalf("ValidateStruct() got unexpected errors: %v", errs)
			}
			for _, field := range tt.wantFields {
				found := false
				for _, e := range errs {
					if e.Field == field {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected a validation error for field %s, got %v", field, errs)
				}
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		value   any
		tag     string
		wantErr bool
	}{
		{name: "ValidEmail", value: "test@example.com", tag: "email"},
		{name: "InvalidEmail", value: "not-an-email", tag: "email", wantErr: true},
		{name: "RequiredPresent", value: "value", tag: "required"},
		{name: "RequiredEmpty", value: "", tag: "required", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.value, tt.tag)
			if tt.wantErr && len(errs) == 0 {
				t.Error("Validate() expected errors but got none")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Errorf("Validate() got unexpected errors: %v", errs)
			}
		})
	}
}
