package steam

type ownedGamesEnvelope struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []ownedGame `json:"games"`
	} `json:"response"`
}

type ownedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	RTimeLastPlayed int64  `json:"rtime_last_played,omitempty"`
	ImgIconURL      string `json:"img_icon_url,omitempty"`
}

type vanityEnvelope struct {
	Response struct {
		SteamID string `json:"steamid"`
		Success int    `json:"success"`
		Message string `json:"message,omitempty"`
	} `json:"response"`
}
