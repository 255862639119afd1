// Package docs registra la especificación OpenAPI servida en /swagger.
// Regenerar con: swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/forgot-password/{email}": {
            "get": {
                "description": "Envía un código de recuperación por correo. La respuesta es la misma exista o no la cuenta.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Recuperar contraseña",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Email de la cuenta",
                        "name": "email",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Iniciar sesión",
                "parameters": [
                    {
                        "description": "Credenciales",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/users.loginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/users.loginResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/auth/logout": {
            "post": {
                "description": "Revoca el token actual.",
                "tags": [
                    "auth"
                ],
                "summary": "Cerrar sesión",
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "description": "Máximo 5 intentos por email cada 15 minutos.",
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Cambiar contraseña con código",
                "parameters": [
                    {
                        "description": "Email, código recibido por correo y nueva contraseña",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/users.resetPasswordRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "422": {
                        "description": "invalid or expired reset code",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/auth/signup": {
            "post": {
                "description": "Crea la cuenta (rol owner) y su perfil de dueño.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Registro de dueño",
                "parameters": [
                    {
                        "description": "Cuenta y perfil",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/users.signupRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "integer"
                            }
                        }
                    },
                    "400": {
                        "description": "invalid json / validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/auth/verify-email": {
            "post": {
                "description": "Envía un código de 6 caracteres al email. Máximo 5 intentos por minuto por email.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Enviar código de verificación",
                "parameters": [
                    {
                        "description": "Email",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/users.emailRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/owners": {
            "get": {
                "description": "Lista paginada (50 por página) ordenada por apellido. Requiere ` + "`" + `owners:manage` + "`" + `.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "owners"
                ],
                "summary": "Listar dueños",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Página (desde 1)",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Filtro por nombre",
                        "name": "name",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/owners.ownerPageResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "post": {
                "description": "Crea un perfil PetOwner. Requiere ` + "`" + `owners:manage` + "`" + ` (staff/admin).",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "owners"
                ],
                "summary": "Registrar dueño",
                "parameters": [
                    {
                        "description": "Datos del dueño",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/owners.createOwnerRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/owners.OwnerResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/owners/me": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "owners"
                ],
                "summary": "Perfil del dueño autenticado",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Bearer token",
                        "name": "Authorization",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/owners.OwnerResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "owner not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/owners/{ownerID}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "owners"
                ],
                "summary": "Ver dueño",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/owners.OwnerResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "owner not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "patch": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "owners"
                ],
                "summary": "Actualizar dueño",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Campos a modificar",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/owners.updateOwnerRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/owners.OwnerResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "owner not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/owners/{ownerID}/pets": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Listar mascotas de un dueño",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Página (desde 1)",
                        "name": "page",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petPageResponse"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "owner not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "post": {
                "description": "Crea una mascota para el dueño indicado. Acepta JSON o multipart/form-data (con campo opcional ` + "`" + `photo` + "`" + `). Requiere ` + "`" + `pets:manage` + "`" + `.",
                "consumes": [
                    "application/json",
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Registrar mascota de un dueño",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Solo en modo dev: admin, staff u owner",
                        "name": "X-Debug-Role",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Datos de la mascota",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/pets.createPetRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/pets.petResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "owner not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "413": {
                        "description": "photo too large",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/owners/{ownerID}/pets/count": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Contar mascotas activas de un dueño",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "integer"
                            }
                        }
                    }
                }
            }
        },
        "/owners/{ownerID}/pets/search/{name}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Buscar mascotas de un dueño por nombre",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del dueño",
                        "name": "ownerID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Texto a buscar",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petPageResponse"
                        }
                    }
                }
            }
        },
        "/pets": {
            "get": {
                "description": "Lista paginada (50 por página) ordenada por nombre. Requiere ` + "`" + `pets:manage` + "`" + `.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Listar mascotas activas",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Página (desde 1)",
                        "name": "page",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petPageResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/pets/archived": {
            "get": {
                "description": "Archivadas, la más reciente primero. Requiere ` + "`" + `pets:manage` + "`" + `.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Listar mascotas archivadas",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Página (desde 1)",
                        "name": "page",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petPageResponse"
                        }
                    }
                }
            }
        },
        "/pets/search/{name}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Buscar mascotas por nombre",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Texto a buscar",
                        "name": "name",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Página (desde 1)",
                        "name": "page",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petPageResponse"
                        }
                    }
                }
            }
        },
        "/pets/{petID}": {
            "get": {
                "description": "Staff/admin ven cualquier mascota activa; el dueño solo las suyas.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Ver mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "delete": {
                "description": "Borra la mascota (activa o archivada) y todo su historial. Irreversible. Requiere ` + "`" + `pets:purge` + "`" + ` (admin).",
                "produces": [
                    "text/plain"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Borrar mascota definitivamente",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Permanently Deleted",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "storage unavailable",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "patch": {
                "description": "PATCH del perfil. ` + "`" + `birth_date: null` + "`" + ` limpia la fecha.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Actualizar mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Campos a modificar",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/pets.updatePetRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/pets.petResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/pets/{petID}/archive": {
            "post": {
                "description": "Archiva la mascota activa junto con todo su historial clínico en una sola transacción. Requiere ` + "`" + `pets:archive` + "`" + `.",
                "produces": [
                    "text/plain"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Archivar mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Pet was archived.",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/pets.partialFailureResponse"
                        }
                    },
                    "503": {
                        "description": "storage unavailable",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/pets/{petID}/photo": {
            "post": {
                "description": "Campo ` + "`" + `photo` + "`" + ` (jpeg, png, gif, svg; máximo 2048 KB). Reemplaza y borra la foto anterior.",
                "consumes": [
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Subir foto de la mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "file",
                        "description": "Imagen",
                        "name": "photo",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "400": {
                        "description": "Please select an image",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "413": {
                        "description": "photo too large",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "422": {
                        "description": "tipo de archivo inválido",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/pets/{petID}/records/{kind}": {
            "get": {
                "description": "Lista los registros del tipo indicado, más reciente primero. El dueño puede ver los de sus mascotas; staff/admin todos.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Listar registros clínicos de una mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Tipo de registro",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "boolean",
                        "description": "Incluye registros archivados",
                        "name": "include_archived",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Fecha mínima (RFC3339 o YYYY-MM-DD)",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Fecha máxima (RFC3339 o YYYY-MM-DD)",
                        "name": "to",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Máximo de registros (1-200). Por defecto 50",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/records.recordResponse"
                            }
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "post": {
                "description": "Crea un registro del tipo indicado (deworming-logs, vaccination-logs, diagnoses, admissions, test-results, services-availed, treatments). Requiere ` + "`" + `records:manage` + "`" + ` (staff/admin).",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Crear registro clínico de una mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Solo en modo dev: admin, staff u owner",
                        "name": "X-Debug-Role",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Tipo de registro",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fecha y detalle del registro",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/records.createRecordRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/records.recordResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / details inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found / unknown record kind",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "pet is archived",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/pets/{petID}/restore": {
            "post": {
                "description": "Reactiva la mascota archivada y todo su historial. Requiere ` + "`" + `pets:archive` + "`" + `.",
                "produces": [
                    "text/plain"
                ],
                "tags": [
                    "pets"
                ],
                "summary": "Restaurar mascota",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la mascota",
                        "name": "petID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Pet restored successfully",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "pet not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "storage unavailable",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/records/{kind}/{recordID}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Ver un registro clínico",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Tipo de registro",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del registro",
                        "name": "recordID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "boolean",
                        "description": "Permite ver un registro archivado",
                        "name": "include_archived",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/records.recordResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "record not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "delete": {
                "description": "Soft-delete de un único registro. Requiere ` + "`" + `records:manage` + "`" + `.",
                "tags": [
                    "records"
                ],
                "summary": "Archivar un registro clínico",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Tipo de registro",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del registro",
                        "name": "recordID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "archivado"
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "record not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "patch": {
                "description": "PATCH: los campos de details se combinan sobre el detalle actual. Requiere ` + "`" + `records:manage` + "`" + `.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Actualizar un registro clínico",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Tipo de registro",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del registro",
                        "name": "recordID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Campos a modificar",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/records.updateRecordRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/records.recordResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / details inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "record not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/treatments/{treatmentID}/records/{kind}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Listar medicaciones o condiciones de un tratamiento",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del tratamiento",
                        "name": "treatmentID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "medications | pet-conditions",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "boolean",
                        "description": "Incluye registros archivados",
                        "name": "include_archived",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/records.recordResponse"
                            }
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "treatment not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "post": {
                "description": "Crea una medicación (medications) o condición (pet-conditions) bajo un tratamiento activo. Requiere ` + "`" + `records:manage` + "`" + `.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "records"
                ],
                "summary": "Crear registro de un tratamiento",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del tratamiento",
                        "name": "treatmentID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "medications | pet-conditions",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fecha y detalle del registro",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/records.createRecordRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/records.recordResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / details inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "treatment not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "pet is archived",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/users": {
            "post": {
                "description": "Alta de cuentas staff/admin. Requiere ` + "`" + `users:manage` + "`" + `.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "users"
                ],
                "summary": "Crear usuario",
                "parameters": [
                    {
                        "description": "Cuenta",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/users.createUserRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/users.UserResponse"
                        }
                    },
                    "400": {
                        "description": "validación",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "email already used",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/users/{userID}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "users"
                ],
                "summary": "Ver usuario",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del usuario",
                        "name": "userID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/users.UserResponse"
                        }
                    },
                    "404": {
                        "description": "user not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/users/{userID}/activate": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "users"
                ],
                "summary": "Activar / desactivar cuenta",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del usuario",
                        "name": "userID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/users.UserResponse"
                        }
                    },
                    "404": {
                        "description": "user not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/users/{userID}/deactivate": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "users"
                ],
                "summary": "Activar / desactivar cuenta",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del usuario",
                        "name": "userID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/users.UserResponse"
                        }
                    },
                    "404": {
                        "description": "user not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "lifecycle.Step": {
            "type": "object",
            "properties": {
                "entity": {
                    "type": "string"
                },
                "rows": {
                    "type": "integer"
                }
            }
        },
        "owners.OwnerResponse": {
            "type": "object",
            "properties": {
                "barangay": {
                    "type": "string"
                },
                "contact_num": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "firstname": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "lastname": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                },
                "user_id": {
                    "type": "string"
                },
                "zipcode_id": {
                    "type": "string"
                },
                "zone": {
                    "type": "string"
                }
            }
        },
        "owners.createOwnerRequest": {
            "type": "object",
            "properties": {
                "barangay": {
                    "type": "string"
                },
                "contact_num": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "firstname": {
                    "type": "string"
                },
                "lastname": {
                    "type": "string"
                },
                "user_id": {
                    "type": "string"
                },
                "zipcode_id": {
                    "type": "string"
                },
                "zone": {
                    "type": "string"
                }
            }
        },
        "owners.ownerPageResponse": {
            "type": "object",
            "properties": {
                "current_page": {
                    "type": "integer"
                },
                "data": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/owners.OwnerResponse"
                    }
                },
                "last_page": {
                    "type": "integer"
                },
                "per_page": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                }
            }
        },
        "owners.updateOwnerRequest": {
            "type": "object",
            "properties": {
                "barangay": {
                    "type": "string"
                },
                "contact_num": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "firstname": {
                    "type": "string"
                },
                "lastname": {
                    "type": "string"
                },
                "zipcode_id": {
                    "type": "string"
                },
                "zone": {
                    "type": "string"
                }
            }
        },
        "pets.createPetRequest": {
            "type": "object",
            "properties": {
                "birth_date": {
                    "type": "string"
                },
                "breed": {
                    "type": "string"
                },
                "microchip": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "sex": {
                    "type": "string"
                },
                "species": {
                    "type": "string"
                }
            }
        },
        "pets.partialFailureResponse": {
            "type": "object",
            "properties": {
                "applied": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/lifecycle.Step"
                    }
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "pets.petPageResponse": {
            "type": "object",
            "properties": {
                "current_page": {
                    "type": "integer"
                },
                "data": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/pets.petResponse"
                    }
                },
                "last_page": {
                    "type": "integer"
                },
                "per_page": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                }
            }
        },
        "pets.petResponse": {
            "type": "object",
            "properties": {
                "birth_date": {
                    "type": "string"
                },
                "breed": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "deleted_at": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "microchip": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "owner_id": {
                    "type": "string"
                },
                "photo": {
                    "type": "string"
                },
                "sex": {
                    "type": "string"
                },
                "species": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                }
            }
        },
        "pets.updatePetRequest": {
            "type": "object",
            "properties": {
                "breed": {
                    "type": "string"
                },
                "microchip": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "sex": {
                    "type": "string"
                },
                "species": {
                    "type": "string"
                }
            }
        },
        "records.createRecordRequest": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "records.recordResponse": {
            "type": "object",
            "properties": {
                "created_at": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "deleted_at": {
                    "type": "string"
                },
                "details": {
                    "type": "object"
                },
                "id": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "parent_id": {
                    "type": "string"
                },
                "parent_type": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                }
            }
        },
        "records.updateRecordRequest": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "users.UserResponse": {
            "type": "object",
            "properties": {
                "created_at": {
                    "type": "string"
                },
                "deactivated_at": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                }
            }
        },
        "users.createUserRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                }
            }
        },
        "users.emailRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                }
            }
        },
        "users.loginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "users.loginResponse": {
            "type": "object",
            "properties": {
                "expires_at": {
                    "type": "string"
                },
                "petowner": {
                    "$ref": "#/definitions/owners.OwnerResponse"
                },
                "token": {
                    "type": "string"
                },
                "user": {
                    "$ref": "#/definitions/users.UserResponse"
                }
            }
        },
        "users.resetPasswordRequest": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "users.signupRequest": {
            "type": "object",
            "properties": {
                "barangay": {
                    "type": "string"
                },
                "contact_num": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "firstname": {
                    "type": "string"
                },
                "lastname": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "zipcode_id": {
                    "type": "string"
                },
                "zone": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Pet Clinical History API",
	Description:      "Historial clínico de mascotas: dueños, mascotas, registros clínicos y su ciclo de vida (archivar, restaurar, purgar).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
