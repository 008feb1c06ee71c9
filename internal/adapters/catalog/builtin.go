package catalog

import "load-tester/internal/domain"

// builtinScenarios returns the stock catalog. The game flows pair with the
// simulator in cmd/apisim; the mobile flows are templates for real backends
// and lean on placeholder resolution and response extraction.
func builtinScenarios() []domain.Scenario {
	return []domain.Scenario{
		{
			Name:        "login_lobby_game",
			Description: "Full game session: login, browse the lobby, join a game, check status, log out",
			Actions: []domain.Action{
				{
					Name:     "login",
					Method:   "POST",
					Endpoint: "/api/login",
					Delay:    2.0,
					Payload: map[string]any{
						"username": "test_user_{user_id}",
						"password": "test_password",
					},
					Extract: map[string]string{"session_id": "$.session_id"},
				},
				{Name: "lobby", Method: "GET", Endpoint: "/api/lobby", Delay: 1.5},
				{
					Name:     "join_game",
					Method:   "POST",
					Endpoint: "/api/join_game",
					Delay:    3.0,
					Payload:  map[string]any{"game_id": "game_1"},
				},
				{Name: "game_status", Method: "GET", Endpoint: "/api/game_status", Delay: 0.5},
				{
					Name:     "logout",
					Method:   "POST",
					Endpoint: "/api/logout",
					Delay:    1.0,
					Payload:  map[string]any{"session_id": "{session_id}"},
				},
			},
		},
		{
			Name:        "quick_match",
			Description: "Login and jump straight into a game",
			Actions: []domain.Action{
				{
					Name:     "login",
					Method:   "POST",
					Endpoint: "/api/login",
					Delay:    1.5,
					Payload: map[string]any{
						"username": "test_user_{user_id}",
						"password": "test_password",
					},
					Extract: map[string]string{"session_id": "$.session_id"},
				},
				{
					Name:     "join_game",
					Method:   "POST",
					Endpoint: "/api/join_game",
					Delay:    2.0,
					Payload:  map[string]any{"game_id": "game_1"},
				},
				{Name: "game_status", Method: "GET", Endpoint: "/api/game_status", Delay: 0.5},
			},
		},
		{
			Name:        "lobby_browse",
			Description: "Login and browse the lobby without joining a game",
			Actions: []domain.Action{
				{
					Name:     "login",
					Method:   "POST",
					Endpoint: "/api/login",
					Delay:    2.0,
					Payload: map[string]any{
						"username": "test_user_{user_id}",
						"password": "test_password",
					},
				},
				{Name: "lobby", Method: "GET", Endpoint: "/api/lobby", Delay: 1.0},
				{Name: "lobby", Method: "GET", Endpoint: "/api/lobby", Delay: 1.0},
				{Name: "server_stats", Method: "GET", Endpoint: "/api/server_stats", Delay: 0.5},
			},
		},
		{
			Name:        "mobile_journey",
			Description: "Complete mobile client flow from app launch to end of game",
			Actions: []domain.Action{
				{
					Name:     "app_launch",
					Method:   "POST",
					Endpoint: "/api/v1/app/launch",
					Delay:    2.0,
					Headers:  mobileHeaders(),
					Payload: map[string]any{
						"device_id":   "{device_id}",
						"app_version": "1.0.0",
						"platform":    "iOS",
					},
				},
				{
					Name:     "user_login",
					Method:   "POST",
					Endpoint: "/api/v1/auth/login",
					Delay:    3.0,
					Payload: map[string]any{
						"username":  "test_user_{user_id}",
						"password":  "test_password",
						"device_id": "{device_id}",
					},
					Extract: map[string]string{"auth_token": "$.access_token"},
				},
				{
					Name:     "load_player_data",
					Method:   "GET",
					Endpoint: "/api/v1/player/profile",
					Delay:    1.5,
					Headers:  map[string]string{"Authorization": "Bearer {auth_token}"},
				},
				{
					Name:     "start_game_session",
					Method:   "POST",
					Endpoint: "/api/v1/game/start",
					Delay:    1.0,
					Payload:  map[string]any{"game_mode": "normal"},
				},
				{
					Name:     "game_action",
					Method:   "POST",
					Endpoint: "/api/v1/game/action",
					Delay:    0.5,
					Payload:  map[string]any{"action": "move", "x": 100, "y": 200},
				},
				{
					Name:     "end_game_session",
					Method:   "POST",
					Endpoint: "/api/v1/game/end",
					Delay:    2.0,
					Payload:  map[string]any{"score": 1500, "duration": 120},
				},
			},
		},
		{
			Name:        "mobile_social",
			Description: "Social and multiplayer features of the mobile client",
			Actions: []domain.Action{
				{Name: "get_friends", Method: "GET", Endpoint: "/api/v1/social/friends", Delay: 1.0},
				{
					Name:     "send_gift",
					Method:   "POST",
					Endpoint: "/api/v1/social/gift",
					Delay:    1.5,
					Payload:  map[string]any{"friend_id": "friend_123", "gift_type": "coins"},
				},
				{
					Name:     "join_multiplayer",
					Method:   "POST",
					Endpoint: "/api/v1/multiplayer/join",
					Delay:    2.0,
					Payload:  map[string]any{"room_type": "quick_match"},
				},
			},
		},
	}
}

func mobileHeaders() map[string]string {
	return map[string]string{
		"User-Agent":    "YourGame/1.0.0 (iPhone; iOS 15.0; Scale/3.00)",
		"Accept":        "application/json",
		"Content-Type":  "application/json",
		"X-Platform":    "iOS",
		"X-App-Version": "1.0.0",
		"X-Device-Type": "iPhone13,2",
	}
}
