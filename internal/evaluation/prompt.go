// internal/evaluation/prompt.go
package evaluation

import "fmt"

// promptTemplate is the fixed prompt sent for every (method, backend) pair.
// The single substitution point is the method signature; the instructions
// pin the response to the exact record shape the parser validates.
const promptTemplate = `Given this API method signature:
%s

Analyze this method and provide:
1. Purpose and behavior: Detailed description of what this method does
2. Return value type: The exact type this method returns
3. Return value description: What the return value represents

Format your response as JSON:
{
  "purpose_behavior": "detailed description here",
  "return_values": {
    "type": "exact_type_here",
    "description": "return value meaning here"
  }
}

Respond ONLY with the JSON, no additional text.`

// Prompt builds the evaluation prompt for a method signature.
func Prompt(signature string) string {
	return fmt.Sprintf(promptTemplate, signature)
}
