/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

// nolint:lll
const schemaDoc = `{
  "required": [
    "id"
  ],
  "properties": {
    "@context": {
      "oneOf": [
        {
          "type": "string"
        },
        {
          "type": "array",
          "items": {
            "anyOf": [
              {
                "type": "string"
              },
              {
                "type": "object"
              }
            ]
          }
        }
      ]
    },
    "id": {
      "type": "string"
    },
    "alsoKnownAs": {
      "type": "array",
      "items": {
        "type": "string"
      }
    },
    "publicKey": {
      "type": "array",
      "items": {
        "$ref": "#/definitions/verificationMethod"
      }
    },
    "verificationMethod": {
      "type": "array",
      "items": {
        "$ref": "#/definitions/verificationMethod"
      }
    },
    "authentication": {
      "type": "array",
      "items": {
        "$ref": "#/definitions/verification"
      }
    },
    "keyAgreement": {
      "type": "array",
      "items": {
        "$ref": "#/definitions/verification"
      }
    },
    "service": {
      "type": "array",
      "items": {
        "$ref": "#/definitions/service"
      }
    }
  },
  "definitions": {
    "verificationMethod": {
      "required": [
        "id",
        "type"
      ],
      "type": "object",
      "properties": {
        "id": {
          "type": "string"
        },
        "type": {
          "type": "string"
        },
        "controller": {
          "type": "string"
        }
      }
    },
    "verification": {
      "oneOf": [
        {
          "type": "string"
        },
        {
          "type": "object",
          "required": [
            "type"
          ]
        }
      ]
    },
    "service": {
      "required": [
        "type",
        "serviceEndpoint"
      ],
      "type": "object",
      "properties": {
        "id": {
          "type": "string"
        },
        "type": {
          "type": "string"
        },
        "priority": {
          "type": "integer"
        },
        "recipientKeys": {
          "type": "array",
          "items": {
            "type": "string"
          }
        },
        "routingKeys": {
          "type": "array",
          "items": {
            "type": "string"
          }
        }
      }
    }
  }
}`
